package main

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Backup  struct {
		Config   string `help:"config file path" short:"c" required:""`
		State    string `help:"state file path (defaults to <config>.state)"`
		Database string `help:"run catalog database path" short:"d"`
	} `cmd:"" help:"Run one backup immediately."`
	Prune struct {
		Config string `help:"config file path" short:"c" required:""`
	} `cmd:"" help:"Delete old archives beyond the configured keep counts."`
	Status struct {
		Config string `help:"config file path" short:"c" required:""`
		State  string `help:"state file path (defaults to <config>.state)"`
	} `cmd:"" help:"Show the last backup time and next due time."`
	History struct {
		Database string `help:"run catalog database path" short:"d" required:""`
		Limit    int    `help:"maximum runs to list" default:"20"`
	} `cmd:"" help:"List recent backup runs."`
	Daemon struct {
		Config   string `help:"config file path" short:"c" required:""`
		State    string `help:"state file path (defaults to <config>.state)"`
		Database string `help:"run catalog database path" short:"d"`
	} `cmd:"" help:"Run the backup service."`
}
