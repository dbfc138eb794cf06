package api

import (
	"fmt"
)

var knownEvents = map[string]bool{
	"run.completed":  true,
	"run.infeasible": true,
	"run.unbounded":  true,
	"run.failed":     true,
}

func validateRunRequest(req *runRequest) error {
	if req.Dataset == "" && req.DatasetRef == "" {
		return fmt.Errorf("either dataset or datasetRef is required")
	}
	if req.Dataset != "" && req.DatasetRef != "" {
		return fmt.Errorf("dataset and datasetRef are mutually exclusive")
	}
	if req.Solve.TimeLimitSec < 0 {
		return fmt.Errorf("solve.timeLimitSec must be >= 0")
	}
	if req.Solve.MIPRelGap < 0 || req.Solve.MIPRelGap >= 1 {
		return fmt.Errorf("solve.mipRelGap must be in [0,1)")
	}
	if req.Solve.Threads < 0 {
		return fmt.Errorf("solve.threads must be >= 0")
	}
	return nil
}

func validateSubscriptionRequest(req *subscriptionRequest) error {
	if req.URL == "" {
		return fmt.Errorf("url is required")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("at least one event is required")
	}
	for _, e := range req.Events {
		if !knownEvents[e] {
			return fmt.Errorf("unknown event %q", e)
		}
	}
	return nil
}

func validateResultFormat(format string) error {
	if format != "yaml" && format != "csv" {
		return fmt.Errorf("format must be yaml or csv")
	}
	return nil
}
