package metrics

import "testing"

func TestRepeatedConstructionDoesNotPanic(t *testing.T) {
	a := NewProm("atomiq_test")
	b := NewProm("atomiq_test")

	a.IncJobsStarted()
	a.IncJobsCompleted("succeeded")
	a.ObserveStageDuration("fetch", 0.5)
	a.AddFilesMaterialized(3)
	b.IncJobsStarted()

	s1 := NewServerProm("atomiq_test")
	s2 := NewServerProm("atomiq_test")
	s1.ObserveRequest("GET", "/health", "200", 0.01)
	s2.ObserveRequest("POST", "/api/build", "200", 0.02)
}
