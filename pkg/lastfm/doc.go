// Package lastfm provides a client library for the Last.fm API 2.0.
//
// # Overview
//
// The package covers the subset of the API a desktop player needs: the
// token/session handshake, now playing updates, single-item scrobbles,
// and the love/unlove/ban/unban rating calls. Every call is signed.
//
// # Quick Start
//
//	import "github.com/adammhaile/elpis/pkg/lastfm"
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:    "your-api-key",
//	    APISecret: "your-api-secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Authentication
//
// The SessionManager returned by Client.Sessions walks the handshake:
//
//	authURL, err := client.Sessions().AuthorizationURL(ctx)
//	// the user visits authURL and approves the application
//	session, err := client.Sessions().GetSession(ctx)
//	// persist session.Key; pass it as Config.SessionKey next time
//
// Tokens expire after TokenLifetime and are refreshed transparently.
// An established session is never refreshed, and calling GetSession
// again returns ErrSessionEstablished.
//
// # Scrobbling
//
//	track := lastfm.Track{
//	    Artist:    "The Beatles",
//	    Track:     "Yesterday",
//	    Duration:  125 * time.Second,
//	    StartedAt: started,
//	}
//	np, err := client.Scrobble().UpdateNowPlaying(ctx, track)
//	// ... later
//	resp, err := client.Scrobble().Scrobble(ctx, np.Track.Track)
//
// Responses carry a CorrectedTrack. The service may canonicalize names;
// the caller's Track is never modified, so thread the corrected copy
// forward for later rating calls.
//
// # Error Handling
//
// A response envelope with status="failed" becomes *Error, even on HTTP
// 200. Network failures and unparseable bodies become *TransportError.
// KindOf maps any error onto a small taxonomy:
//
//	switch lastfm.KindOf(err) {
//	case lastfm.KindAuthenticationFailure:
//	    // re-authorize
//	case lastfm.KindTransport:
//	    // safe to try again later
//	}
//
// # Configuration
//
// Config.Proxy routes every request through an HTTP or SOCKS5 proxy.
// Config.Transport replaces the HTTP layer entirely, which is how the
// tests run against fakes. Retries are off unless Config.MaxAttempts is
// greater than one.
package lastfm
