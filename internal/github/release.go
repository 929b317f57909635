package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// releaseResponse represents a subset of the GitHub Releases API response.
type releaseResponse struct {
	TagName string `json:"tag_name"`
}

// GetLatestRelease fetches the latest release tag from a GitHub repository.
// It strips the optional tagPrefix from the tag name (e.g., "bun-v" from "bun-v1.2.3").
// Returns the version string without the prefix.
func GetLatestRelease(ctx context.Context, client *http.Client, owner, repo, tagPrefix string) (string, error) {
	return GetLatestReleaseWithBase(ctx, client, owner, repo, tagPrefix, "https://api.github.com")
}

// GetLatestReleaseWithBase is GetLatestRelease with an overridable API base
// URL, so tests can point it at an httptest server instead of github.com.
func GetLatestReleaseWithBase(ctx context.Context, client *http.Client, owner, repo, tagPrefix, baseURL string) (string, error) {
	if strings.Contains(owner, "/") || strings.Contains(repo, "/") {
		return "", fmt.Errorf("invalid owner %q or repo %q: must not contain '/'", owner, repo)
	}
	if owner == "" || repo == "" {
		return "", fmt.Errorf("owner and repo must not be empty")
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d for %s/%s", resp.StatusCode, owner, repo)
	}

	var release releaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if release.TagName == "" {
		return "", fmt.Errorf("empty tag_name in latest release for %s/%s", owner, repo)
	}

	version := strings.TrimPrefix(release.TagName, tagPrefix)
	return version, nil
}

// ListReleases fetches up to maxPages pages (100 each) of a repository's
// release tags, newest first, stripping tagPrefix. Used by the core
// backend's ListAllVersions.
func ListReleases(ctx context.Context, client *http.Client, owner, repo, tagPrefix string, maxPages int) ([]string, error) {
	return ListReleasesWithBase(ctx, client, owner, repo, tagPrefix, "https://api.github.com", maxPages)
}

// ListReleasesWithBase is ListReleases with an overridable API base URL.
func ListReleasesWithBase(ctx context.Context, client *http.Client, owner, repo, tagPrefix, baseURL string, maxPages int) ([]string, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo must not be empty")
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	var versions []string
	for page := 1; page <= maxPages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=100&page=%d", baseURL, owner, repo, page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases: %w", err)
		}
		var releases []releaseResponse
		err = json.NewDecoder(resp.Body).Decode(&releases)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GitHub API returned status %d for %s/%s", resp.StatusCode, owner, repo)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if len(releases) == 0 {
			break
		}
		for _, r := range releases {
			if r.TagName == "" {
				continue
			}
			versions = append(versions, strings.TrimPrefix(r.TagName, tagPrefix))
		}
	}
	return versions, nil
}
