package telemetry

type Recorder interface {
	TurnSubmitted(mode string)
	TurnRejected(reason string)
	ReplyReceived(mode string)
	AudioReceived(bytes int)
	StaleAudioDropped(bytes int)
	FrameDropped()
	ConnectionState(state string, terminal bool)
	SinkError()
}

type Noop struct{}

func (Noop) TurnSubmitted(string)         {}
func (Noop) TurnRejected(string)          {}
func (Noop) ReplyReceived(string)         {}
func (Noop) AudioReceived(int)            {}
func (Noop) StaleAudioDropped(int)        {}
func (Noop) FrameDropped()                {}
func (Noop) ConnectionState(string, bool) {}
func (Noop) SinkError()                   {}
