// Package action defines the typed values broadcast through the dispatcher.
//
// Actions describe something that happened (a user tapped a setting, the
// account server returned profile information, a token refresh completed).
// They carry only the payload needed to reduce state and have no behaviour of
// their own. Consumers type-switch on the concrete action they care about and
// ignore everything else.
package action
