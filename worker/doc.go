// Package worker maintains the roster of conversational workers available to
// the routing pipeline.
//
// Rosters are keyed by session id and passed explicitly into every call, so
// two sessions never share hidden registry state. Workers may declare their
// own capability profile; those that do not get one derived from name and
// role keywords at registration and it stays immutable afterwards.
package worker
