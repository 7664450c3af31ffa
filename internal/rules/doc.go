// Package rules holds the tunable data the behavior pipeline runs on: keyword
// categories, behavior templates, color shifts, and numeric thresholds.
//
// Rules are written in HCL. The defaults are embedded in the binary; a user
// file may replace any category, template, or dispatch block by name and
// override individual thresholds.
package rules
