package report

import (
	"bufio"
	"fmt"
	"io"

	"brokersim/brokersim"
)

// Section banners printed around each phase of a run.
const (
	AddingMessages     = "===ADDING MESSAGES TO TOPICS==="
	StateAfterAddition = "===BROKER STATE AFTER ADDITION OF MESSAGES==="
	ChangeOfTopics     = "===CHANGE OF TOPICS CONFIGURATION==="
	AddingNewMessages  = "===ADDING NEW MESSAGES TO TOPICS==="
	StateAfterChange   = "===BROKER STATE AFTER CONFIGURATION CHANGE==="
)

// WriteBroker dumps every topic, partition and message of b, topics in name
// order and partitions in number order, followed by a blank line.
func WriteBroker(w io.Writer, b *brokersim.Broker) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Broker with %2d topics:\n", b.TopicCount())
	for _, t := range b.Topics() {
		writeTopic(bw, t)
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}

func writeTopic(w io.Writer, t *brokersim.Topic) {
	partitions := t.Partitions()
	fmt.Fprintf(w, "Topic: %10s Partitions: %5d\n", t.Name(), len(partitions))
	for _, p := range partitions {
		msgs := p.Messages()
		fmt.Fprintf(w, "%2d : Count of messages:%6d\n", p.Number(), len(msgs))
		fmt.Fprintln(w, "Messages:")
		for _, m := range msgs {
			fmt.Fprintln(w, m.String())
		}
	}
}

// Line writes a single line, used for banners and per-record errors.
func Line(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
