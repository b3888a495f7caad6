// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.3.0 - Culture switching, search emphasis, settings commit, observer locate
// 0.2.0 - Mansion overlay, playback speeds, render escalation tiers
// 0.1.0 - Initial release: data-root resolution, star overlay, terminal sky view
