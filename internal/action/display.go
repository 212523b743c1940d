package action

import "fmt"

// DisplayState describes what the login and account screens should currently show.
type DisplayState int

const (
	DisplayLoading DisplayState = iota
	DisplayFetchingUserInfo
	DisplayFinishedFetchingUserInfo
	DisplayFetchingScopedKey
	DisplayFinishedFetchingScopedKey
	DisplayFailed
)

var displayStateNames = map[DisplayState]string{
	DisplayLoading:                   "loading",
	DisplayFetchingUserInfo:          "fetching_user_info",
	DisplayFinishedFetchingUserInfo:  "finished_fetching_user_info",
	DisplayFetchingScopedKey:         "fetching_scoped_key",
	DisplayFinishedFetchingScopedKey: "finished_fetching_scoped_key",
	DisplayFailed:                    "failed",
}

func (d DisplayState) String() string {
	if name, ok := displayStateNames[d]; ok {
		return name
	}
	return fmt.Sprintf("display_state(%d)", int(d))
}

// ParseDisplayState returns the DisplayState named by s.
func ParseDisplayState(s string) (DisplayState, error) {
	for state, name := range displayStateNames {
		if name == s {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown display state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DisplayState) MarshalText() ([]byte, error) {
	if _, ok := displayStateNames[d]; !ok {
		return nil, fmt.Errorf("unknown display state %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DisplayState) UnmarshalText(text []byte) error {
	state, err := ParseDisplayState(string(text))
	if err != nil {
		return err
	}
	*d = state
	return nil
}
