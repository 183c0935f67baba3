package app

import "embed"

// templateFS contains the HTML templates bundled with the binary.
//
//go:embed templates/*
var templateFS embed.FS

// staticFS holds the stylesheet served under assetPrefix.
//
//go:embed static/*
var staticFS embed.FS

//go:embed site.yaml
var siteManifest []byte
