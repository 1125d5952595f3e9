// Command register syncs the bot's slash commands with Discord without
// starting the bot. Run it after deploying a release that changes commands.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/garyellow/guildbot-go/internal/app"
	"github.com/garyellow/guildbot-go/internal/config"
	"github.com/garyellow/guildbot-go/internal/gateway"
	"github.com/garyellow/guildbot-go/internal/logger"
)

// CLI flags
var (
	guildsFlag  = flag.String("guilds", "", `Comma-separated guild IDs, or "global" (default: DISCORD_COMMAND_GUILD_ID)`)
	dryRunFlag  = flag.Bool("dry-run", false, "Print the command definitions as JSON instead of syncing")
	timeoutFlag = flag.Duration("timeout", 30*time.Second, "Timeout for the whole sync")
)

type options struct {
	guilds  string
	dryRun  bool
	timeout time.Duration
}

func main() {
	flag.Parse()

	opts := options{guilds: *guildsFlag, dryRun: *dryRunFlag, timeout: *timeoutFlag}
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "register: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	defs, err := app.CommandDefinitions()
	if err != nil {
		return fmt.Errorf("build definitions: %w", err)
	}
	if opts.dryRun {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	session, err := gateway.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	scopes := resolveScopes(cfg, opts.guilds)
	log.WithField("scopes", scopes).WithField("commands", len(defs)).Info("Syncing commands")
	return gateway.SyncCommands(ctx, session, cfg.DiscordAppID, scopes, defs, log)
}

// resolveScopes applies the -guilds override on top of the configured scopes.
func resolveScopes(cfg *config.Config, override string) []string {
	switch override {
	case "":
		return cfg.CommandScopes()
	case "global":
		return []string{""}
	}
	c := *cfg
	c.CommandGuildID = override
	return c.CommandScopes()
}
