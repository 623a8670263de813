package logging

import "strings"

// FormatSubject builds the "Job #id · filename" subject used in console output.
func FormatSubject(jobID, filename string) string {
	jobID = strings.TrimSpace(jobID)
	filename = strings.TrimSpace(filename)
	switch {
	case jobID != "" && filename != "":
		return "Job #" + jobID + " · " + filename
	case jobID != "":
		return "Job #" + jobID
	default:
		return filename
	}
}
