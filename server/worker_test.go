package server

import (
	"errors"
	"sync"
	"testing"
)

func TestWorker_Do(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	v, err := w.Do(func() (interface{}, error) { return 42, nil })
	if err != nil || v.(int) != 42 {
		t.Errorf("Do = %v, %v", v, err)
	}

	want := errors.New("boom")
	if _, err := w.Do(func() (interface{}, error) { return nil, want }); err != want {
		t.Errorf("Do err = %v, want %v", err, want)
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	_, err := w.Do(func() (interface{}, error) { panic("kaboom") })
	if err == nil || err.Error() != "panic: kaboom" {
		t.Errorf("err = %v, want panic: kaboom", err)
	}

	// still serving
	v, err := w.Do(func() (interface{}, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorker_Serializes(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(func() (interface{}, error) {
				counter++
				return nil, nil
			})
		}()
	}
	wg.Wait()

	v, _ := w.Do(func() (interface{}, error) { return counter, nil })
	if v.(int) != 100 {
		t.Errorf("counter = %d, want 100", v)
	}
}

func TestWorker_Stopped(t *testing.T) {
	w := NewWorker()
	w.Stop()
	w.Stop()

	ran := false
	_, err := w.Do(func() (interface{}, error) {
		ran = true
		return nil, nil
	})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
	if ran {
		t.Error("work ran after Stop")
	}
}
