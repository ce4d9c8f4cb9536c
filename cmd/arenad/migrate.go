package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/cory-johannsen/arena/internal/config"
)

// migrator is the part of *migrate.Migrate the command drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
}

func newMigrateCmd() *cobra.Command {
	var (
		direction string
		steps     int
		source    string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the match history schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			m, err := migrate.New(source, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("creating migrator: %w", err)
			}
			defer m.Close()

			changed, err := runMigration(m, direction, steps)
			if err != nil {
				return err
			}
			version, dirty, _ := m.Version()
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "no changes (version=%d dirty=%v) [%s]\n", version, dirty, time.Since(start))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s to version=%d dirty=%v [%s]\n", direction, version, dirty, time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "up", "migration direction: up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	cmd.Flags().StringVar(&source, "source", "file://migrations", "migration source URL")
	return cmd
}

// runMigration moves m in direction by steps, or all the way when steps is 0.
//
// Postcondition: Returns changed=false when the schema was already current.
func runMigration(m migrator, direction string, steps int) (bool, error) {
	if steps < 0 {
		return false, fmt.Errorf("steps must not be negative, got %d", steps)
	}
	var err error
	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return false, fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration failed: %w", err)
	}
	return true, nil
}
