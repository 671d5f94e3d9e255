// Package client is the FraudLens Go SDK.
//
// It covers the portal API end to end: scanning URLs, reading scan
// history and statistics, and managing the account session.
//
// # Scanning a URL (no account needed)
//
// Scanning works anonymously:
//
//	c, _ := client.New("https://portal.fraudlens.example.com")
//	result, err := c.Scan(ctx, "http://suspicious-site.tk/login")
//	fmt.Println(result.RiskLevel) // "high"
//
// result.Report holds the full rendered risk report as raw JSON, ready to
// pass through to a UI or decode selectively.
//
// # Logging in
//
// Login stores the session token on the client; every later call sends it:
//
//	user, err := c.Login(ctx, "alice@example.com", "password")
//	scans, err := c.History(ctx, 20)
//
// A token obtained elsewhere can be attached directly:
//
//	c, _ := client.New(portalURL, client.WithToken(token))
//
// # History and statistics
//
// Authenticated scans are recorded automatically. Retrieve them with
// History, GetScan, and Dashboard:
//
//	d, _ := c.Dashboard(ctx)
//	fmt.Printf("%d scans, %d threats\n", d.Stats.TotalScans, d.Stats.ThreatsDetected)
package client
