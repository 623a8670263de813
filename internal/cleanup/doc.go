// Package cleanup reconciles duplicate print records after the fact.
//
// Jobs sharing a filename form a group. Each member earns points for a
// quality rating (10), success status (5), pending status (1) and a saved
// instruction file (3); ties go to the later start time and then the higher
// id, so every group has exactly one survivor. Recommend is pure; Cleaner
// applies the result in dry-run, interactive or automatic mode.
package cleanup
