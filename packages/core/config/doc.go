// Package config loads contract files and turns them into runnable contracts.
//
// It provides functionality for:
//   - Loading hitcontract.yaml (or JSON) files with strict field checking
//   - Default values and named environment overrides
//   - Resolving {{...}} templates once per run
//   - Selecting contracts by focus (only), skip, name pattern and tags
package config
