package main

import (
	"therapy-chat-be/internal/model"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warnColor    = color.New(color.FgYellow).SprintFunc()
	dimColor     = color.New(color.Faint).SprintFunc()
)

func statusColor(status string) string {
	switch status {
	case model.JobStatusSucceeded:
		return successColor(status)
	case model.JobStatusFailed, model.JobStatusCancelled:
		return errorColor(status)
	case model.JobStatusSubmitting, model.JobStatusQueued, model.JobStatusRunning:
		return warnColor(status)
	default:
		return dimColor(status)
	}
}
