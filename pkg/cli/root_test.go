package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestRootCmdStructure(t *testing.T) {
	root := rootCmd()
	if root.Name != "ocipush" {
		t.Errorf("root name = %q", root.Name)
	}

	var names []string
	for _, c := range root.Commands {
		names = append(names, c.Name)
	}
	for _, want := range []string{"push", "task"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %q command, have %v", want, names)
		}
	}
}

func TestPushCmdInputFlagsReadEnvironment(t *testing.T) {
	flags := map[string]bool{
		"archive":    false,
		"registry":   false,
		"repository": false,
		"tag":        false,
	}
	for _, f := range pushCmd().Flags {
		name := f.Names()[0]
		if _, ok := flags[name]; !ok {
			continue
		}
		switch v := f.(type) {
		case *cli.StringFlag:
			flags[name] = len(v.Sources.Chain) > 0
		case *cli.StringSliceFlag:
			flags[name] = len(v.Sources.Chain) > 0
		}
	}
	for name, hasEnv := range flags {
		if !hasEnv {
			t.Errorf("flag %q has no environment source", name)
		}
	}
}

func TestPushCmdRequiresArchiveAndRegistry(t *testing.T) {
	root := rootCmd()
	err := root.Run(context.Background(), []string{"ocipush", "push"})
	if err == nil {
		t.Fatal("expected error for missing required flags")
	}
}

func TestPushCmdRejectsUnknownFormat(t *testing.T) {
	root := rootCmd()
	err := root.Run(context.Background(), []string{
		"ocipush", "push",
		"--archive", "does-not-matter.tar",
		"--registry", "localhost:5000",
		"--format", "xml",
	})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("error = %v", err)
	}
}
