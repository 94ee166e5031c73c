// Package config provides configuration structures and utilities for gemirror.
// It defines the description of the mirrored site (base URL, sections, main
// content selectors), output locations, and crawl tuning.
package config
