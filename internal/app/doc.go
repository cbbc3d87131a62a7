// Package app wires the client-side stores for one control panel.
//
// An App is created once per process. It holds the REST client, the
// session store and a notification queue. Views are mounted on top of it:
//
//	a, _ := app.New(cfg)
//	a.Start(ctx)                     // first session read
//	console, _ := a.MountConsole(ctx) // one status stream per mount
//	defer console.Close()
//
// MountConsole and NewWizard wait for the session to be known and refuse
// to run without a login. Route maps session state and page to the screen
// to show.
package app
