package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity separates problems that block use of the config from advice
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Problem is one validation finding
type Problem struct {
	Severity Severity
	Key      string
	Message  string
}

func (p Problem) Error() string {
	if p.Key == "" {
		return p.Message
	}
	return fmt.Sprintf("[%s] %s", p.Key, p.Message)
}

// HasErrors reports whether any problem is an error
func HasErrors(problems []Problem) bool {
	for _, p := range problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	hexColor      = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)
	namedColors   = []string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}
	knownRemotes  = []string{RemoteDir, RemoteS3, RemoteSQLite, RemoteHTTP}
	remoteNameRes = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Validate checks the config and returns every problem found
func (c *Config) Validate() []Problem {
	var problems []Problem
	errorf := func(key, format string, args ...interface{}) {
		problems = append(problems, Problem{SeverityError, key, fmt.Sprintf(format, args...)})
	}
	warnf := func(key, format string, args ...interface{}) {
		problems = append(problems, Problem{SeverityWarning, key, fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.User.Name) == "" {
		errorf("user", "'name' is required but is not present.")
	}

	for key, p := range c.Projects {
		prefix := "projects." + key
		if p.HourlyRate < 0 {
			errorf(prefix, "'hourly_rate' must not be negative.")
		}
		if p.HourlyRate > 0 && p.Client == "" {
			warnf(prefix, "'hourly_rate' is set but the project has no client.")
		}
		if p.Color != "" && !validColor(p.Color) {
			errorf(prefix, "'color' must be a color name or hex code but is '%s'.", p.Color)
		}
	}

	seen := map[string]bool{}
	for i, r := range c.Sync.Remotes {
		prefix := fmt.Sprintf("sync.remotes[%d]", i)
		if r.Name == "" {
			errorf(prefix, "'name' is required but is not present.")
		} else {
			prefix = "sync.remotes." + r.Name
			if !remoteNameRes.MatchString(r.Name) {
				errorf(prefix, "'name' may only contain letters, digits, '.', '_' and '-'.")
			}
			if seen[r.Name] {
				errorf(prefix, "remote is defined more than once.")
			}
			seen[r.Name] = true
		}

		switch r.Type {
		case RemoteDir, RemoteSQLite:
			if r.Path == "" {
				errorf(prefix, "'path' is required for %s remotes.", r.Type)
			}
		case RemoteHTTP:
			if r.URL == "" {
				errorf(prefix, "'url' is required for http remotes.")
			} else if !strings.HasPrefix(r.URL, "https://") {
				warnf(prefix, "'url' is not https; punches will travel unencrypted unless encryption_salt is set.")
			}
		case RemoteS3:
			if r.Bucket == "" {
				errorf(prefix, "'bucket' is required for s3 remotes.")
			}
			if r.CredentialsFile == "" && (r.AccessKeyID == "" || r.SecretAccessKey == "") {
				errorf(prefix, "s3 remotes need 'credentials_file' or both 'access_key_id' and 'secret_access_key'.")
			}
		case "":
			errorf(prefix, "'type' is required but is not present.")
		default:
			errorf(prefix, "'type' must be one of (%s) but is '%s'.", strings.Join(knownRemotes, ", "), r.Type)
		}
	}

	if c.Sync.AutoSync && len(c.Sync.Remotes) == 0 {
		warnf("sync", "'auto_sync' is enabled but no remotes are configured.")
	}

	return problems
}

func validColor(s string) bool {
	if hexColor.MatchString(s) {
		return true
	}
	for _, n := range namedColors {
		if strings.EqualFold(n, s) {
			return true
		}
	}
	return false
}
