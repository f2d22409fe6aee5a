package refresher

// Subscriber handles event subscriptions.
type Subscriber struct {
	done                   chan struct{}
	refreshStartedHandler  func(RefreshStarted)
	generationSavedHandler func(GenerationSaved)
	refreshErrorHandler    func(RefreshError)
	scheduleStartedHandler func(ScheduleStarted)
	shutdownHandler        func(ScheduleShutdown)
}

// OnRefreshStarted sets the handler for RefreshStarted events
func OnRefreshStarted(fn func(RefreshStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.refreshStartedHandler = fn }
}

// OnGenerationSaved sets the handler for GenerationSaved events
func OnGenerationSaved(fn func(GenerationSaved)) func(*Subscriber) {
	return func(s *Subscriber) { s.generationSavedHandler = fn }
}

// OnRefreshError sets the handler for RefreshError events
func OnRefreshError(fn func(RefreshError)) func(*Subscriber) {
	return func(s *Subscriber) { s.refreshErrorHandler = fn }
}

// OnScheduleStarted sets the handler for ScheduleStarted events
func OnScheduleStarted(fn func(ScheduleStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.scheduleStartedHandler = fn }
}

// OnScheduleShutdown sets the handler for ScheduleShutdown events
func OnScheduleShutdown(fn func(ScheduleShutdown)) func(*Subscriber) {
	return func(s *Subscriber) { s.shutdownHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
// Example:
//
//	closer := refresher.NewSubscriber(events,
//	  refresher.OnGenerationSaved(func(g GenerationSaved) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:                   make(chan struct{}),
		refreshStartedHandler:  func(RefreshStarted) {},   // nop by default
		generationSavedHandler: func(GenerationSaved) {},  // nop by default
		refreshErrorHandler:    func(RefreshError) {},     // nop by default
		scheduleStartedHandler: func(ScheduleStarted) {},  // nop by default
		shutdownHandler:        func(ScheduleShutdown) {}, // nop by default
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case RefreshStarted:
				s.refreshStartedHandler(e)
			case GenerationSaved:
				s.generationSavedHandler(e)
			case RefreshError:
				s.refreshErrorHandler(e)
			case ScheduleStarted:
				s.scheduleStartedHandler(e)
			case ScheduleShutdown:
				s.shutdownHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
