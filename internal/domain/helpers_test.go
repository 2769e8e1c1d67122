package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

func fakeClockAt(t time.Time) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(t)
}

func mustWindow(date string) Window {
	w, err := BuildDayWindow(date)
	if err != nil {
		panic(err)
	}
	return w
}

func minute(w Window, n int) time.Time {
	return w.Start.Add(time.Duration(n) * time.Minute)
}
