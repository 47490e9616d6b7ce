// Package release decides which GitHub release an application should track.
//
// Tags are reduced to semantic versions (leading non-digits dropped, missing
// components defaulted), and the selection policy picks either the first
// stable release or the newest one depending on the user's preferences.
package release
