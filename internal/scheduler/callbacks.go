package scheduler

// Callbacks provides hooks for job lifecycle events.
// All callbacks are optional - nil callbacks are simply not called.
type Callbacks struct {
	// OnStart is called when a job attempt begins
	OnStart func(result *JobResult)

	// OnSuccess is called when a job completes successfully
	OnSuccess func(result *JobResult)

	// OnFailure is called when a job attempt fails
	OnFailure func(result *JobResult)

	// OnRetryExhausted is called when all retry attempts have failed
	OnRetryExhausted func(results []*JobResult)
}

func (c *Callbacks) callOnStart(result *JobResult) {
	if c != nil && c.OnStart != nil {
		c.OnStart(result)
	}
}

func (c *Callbacks) callOnSuccess(result *JobResult) {
	if c != nil && c.OnSuccess != nil {
		c.OnSuccess(result)
	}
}

func (c *Callbacks) callOnFailure(result *JobResult) {
	if c != nil && c.OnFailure != nil {
		c.OnFailure(result)
	}
}

func (c *Callbacks) callOnRetryExhausted(results []*JobResult) {
	if c != nil && c.OnRetryExhausted != nil {
		c.OnRetryExhausted(results)
	}
}

// LoggingCallbacks returns callbacks that log job outcomes
func LoggingCallbacks(logf func(format string, args ...interface{})) *Callbacks {
	return &Callbacks{
		OnSuccess: func(result *JobResult) {
			logf("Job %s finished in %v (attempt %d)", result.Name, result.Duration(), result.Attempt)
		},
		OnFailure: func(result *JobResult) {
			if result.WillRetry {
				logf("Job %s failed (attempt %d), will retry: %v", result.Name, result.Attempt, result.Error)
			} else {
				logf("Job %s failed (attempt %d): %v", result.Name, result.Attempt, result.Error)
			}
		},
		OnRetryExhausted: func(results []*JobResult) {
			logf("All %d attempts of job %s failed", len(results), results[0].Name)
		},
	}
}

// ChainCallbacks combines multiple callback handlers
func ChainCallbacks(callbacks ...*Callbacks) *Callbacks {
	return &Callbacks{
		OnStart: func(result *JobResult) {
			for _, c := range callbacks {
				c.callOnStart(result)
			}
		},
		OnSuccess: func(result *JobResult) {
			for _, c := range callbacks {
				c.callOnSuccess(result)
			}
		},
		OnFailure: func(result *JobResult) {
			for _, c := range callbacks {
				c.callOnFailure(result)
			}
		},
		OnRetryExhausted: func(results []*JobResult) {
			for _, c := range callbacks {
				c.callOnRetryExhausted(results)
			}
		},
	}
}
