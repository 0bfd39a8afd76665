// SPDX-License-Identifier: Apache-2.0

// Package logging configures the structured logger shared by every node run.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Field names attached to log entries
const (
	FieldRunID  = "run_id"
	FieldNode   = "node"
	FieldGroup  = "group"
	FieldStep   = "step"
	FieldIndex  = "index"
	FieldAction = "action"
)

// New builds a logger writing to out. format is "text" or "json".
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
		})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything, for tests
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// ForNode scopes a logger to one node of a run
func ForNode(logger logrus.FieldLogger, runID, node, group string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		FieldRunID: runID,
		FieldNode:  node,
		FieldGroup: group,
	})
}

// ForStep scopes a node logger to one step
func ForStep(logger logrus.FieldLogger, stepID string, index int, action string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		FieldStep:   stepID,
		FieldIndex:  index + 1,
		FieldAction: action,
	})
}
