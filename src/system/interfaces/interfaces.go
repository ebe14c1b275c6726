package interfaces

// LoggerInterface is the minimal surface the archivist needs from a log
// backend. The stdlib *log.Logger satisfies it, as does anything that can
// swallow a preformatted line.
type LoggerInterface interface {
	Println(v ...interface{})
}
