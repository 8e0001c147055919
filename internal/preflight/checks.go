package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"loom/internal/config"
	"loom/internal/deps"
	"loom/internal/profiles"
	"loom/internal/services/generation"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinaries reports the pipeline's external binaries as preflight results.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// CheckGenerationKey verifies a generation API key is configured. It does not
// touch the network.
func CheckGenerationKey(cfg *config.Config) Result {
	const name = "Generation API key"
	if strings.TrimSpace(cfg.Generation.APIKey) == "" {
		return Result{Name: name, Detail: "api_key missing (set generation.api_key or GEMINI_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckProfileCatalog verifies the channel profile catalog parses.
func CheckProfileCatalog(cfg *config.Config) Result {
	const name = "Channel profiles"
	catalog, err := profiles.Load(cfg.Paths.ProfilesFile)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d profiles", len(catalog.List()))}
}

// CheckGeneration verifies the generation endpoint is reachable and the key
// is accepted. It uses a 30-second timeout and a single attempt (no retries).
func CheckGeneration(ctx context.Context, cfg *config.Config) Result {
	const name = "Generation endpoint"
	gen := cfg.GetGeneration()
	if gen.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := generation.NewClient(generation.Config{
		APIKey:         gen.APIKey,
		BaseURL:        gen.BaseURL,
		Model:          gen.Model,
		TimeoutSeconds: gen.TimeoutSeconds,
	}, generation.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeGenerationError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// summarizeGenerationError produces a human-readable summary for endpoint
// health check failures.
func summarizeGenerationError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (generation API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (generation API unreachable)"
	}
	return err.Error()
}
