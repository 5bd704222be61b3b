// ABOUTME: Centralized configuration defaults for maillog
// ABOUTME: Contains default paths, limits, and the accepted enum values

package config

// Run settings
const (
	DefaultEntriesPath    = "data/entries.json"
	DefaultTokenPath      = "token.json"
	DefaultProcessedLabel = "processed-email-log"
	DefaultMaxMessages    = 25
	DefaultImageFolder    = "email-log"
)

// Mail sources
const (
	SourceGmail   = "gmail"
	SourceMaildir = "maildir"
)

// Image hosts
const (
	HostCloudinary = "cloudinary"
	HostMinIO      = "minio"
	HostNone       = "none"
)

// Text formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Display settings
const (
	DefaultListLimit    = 20
	DefaultHistoryLimit = 50
	DisplayIDLength     = 8
	DisplayTextWidth    = 60
	SeparatorWidth      = 60
	DateFormatShort     = "02 Jan 06 15:04 MST"
)
