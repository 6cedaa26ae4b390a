package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeGit(responses map[string]string, failures map[string]error) func(...string) (string, error) {
	return func(args ...string) (string, error) {
		key := args[0]
		if err, ok := failures[key]; ok {
			return "", err
		}
		if out, ok := responses[key]; ok {
			return out, nil
		}
		return "", errors.New("unexpected git invocation")
	}
}

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	t.Run("outside a git repository", func(t *testing.T) {
		t.Parallel()

		git := fakeGit(nil, map[string]error{"rev-parse": errors.New("not a repo")})
		require.Equal(t, "0.1.0", resolveVersion("0.1.0", git))
	})

	t.Run("exactly on a release tag", func(t *testing.T) {
		t.Parallel()

		git := fakeGit(map[string]string{
			"rev-parse": ".git",
			"describe":  "v0.1.0",
		}, nil)
		require.Equal(t, "0.1.0", resolveVersion("0.1.0", git))
	})

	t.Run("ahead of the release tag", func(t *testing.T) {
		t.Parallel()

		calls := 0
		git := func(args ...string) (string, error) {
			switch args[0] {
			case "rev-parse":
				return ".git", nil
			case "describe":
				calls++
				if calls == 1 {
					return "", errors.New("no exact match")
				}
				return "v0.1.0-3-gabc1234", nil
			}
			return "", errors.New("unexpected git invocation")
		}
		require.Equal(t, "0.1.0-3-gabc1234", resolveVersion("0.1.0", git))
	})

	t.Run("empty base falls back", func(t *testing.T) {
		t.Parallel()

		git := fakeGit(nil, map[string]error{"rev-parse": errors.New("not a repo")})
		require.Equal(t, "0.0.0", resolveVersion("", git))
	})
}
