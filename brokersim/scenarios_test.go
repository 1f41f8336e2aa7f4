package brokersim_test

import (
	"time"

	"brokersim/brokersim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func at(s string) time.Time {
	ts, err := brokersim.ParseTimestamp(s)
	Expect(err).NotTo(HaveOccurred())
	return ts
}

func bodies(msgs []brokersim.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body())
	}
	return out
}

var _ = Describe("MESSAGE BROKER:", func() {
	var broker *brokersim.Broker

	BeforeEach(func() {
		var err error
		broker, err = brokersim.NewBroker(brokersim.Config{
			BrokerID:             "scenario",
			MinimumTimestamp:     at("2018-01-01T00:00"),
			CapacityPerPartition: 2,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	When("a single-partition topic receives more messages than its capacity", func() {
		It("keeps only the newest messages", func() {
			Expect(broker.AddTopic("t1", 1)).To(Succeed())
			for _, day := range []string{"2018-01-02T00:00", "2018-01-03T00:00", "2018-01-04T00:00"} {
				_, err := broker.AddMessage("t1", brokersim.NewMessage(at(day), day, "same"))
				Expect(err).NotTo(HaveOccurred())
			}

			topic, err := broker.Topic("t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(bodies(topic.Partition(1).Messages())).To(Equal([]string{"2018-01-03T00:00", "2018-01-04T00:00"}))
		})
	})

	When("a message predates the broker minimum", func() {
		It("is dropped without an error", func() {
			Expect(broker.AddTopic("t1", 1)).To(Succeed())
			result, err := broker.AddMessage("t1", brokersim.NewMessage(at("2017-12-31T23:59"), "old", "k"))

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(brokersim.Dropped))
			topic, _ := broker.Topic("t1")
			Expect(topic.Partition(1).Len()).To(BeZero())
		})
	})

	When("a message names a partition the topic does not have", func() {
		It("signals PartitionNotFound with the topic and partition", func() {
			Expect(broker.AddTopic("t1", 2)).To(Succeed())
			_, err := broker.AddMessage("t1", brokersim.NewPartitionedMessage(at("2018-02-01T00:00"), "body", 5, "k"))

			Expect(err).To(MatchError(brokersim.ErrPartitionNotFound))
			var pnf *brokersim.PartitionNotFoundError
			Expect(err).To(BeAssignableToTypeOf(pnf))
			Expect(err.Error()).To(Equal("The topic t1 does not have a partition with number 5"))
		})
	})

	When("a topic is asked to shrink", func() {
		It("signals UnsupportedOperation and keeps its partitions", func() {
			Expect(broker.AddTopic("t1", 3)).To(Succeed())
			_, err := broker.AddMessage("t1", brokersim.NewPartitionedMessage(at("2018-02-01T00:00"), "kept", 3, "k"))
			Expect(err).NotTo(HaveOccurred())

			err = broker.ChangeTopicSettings("t1", 1)

			Expect(err).To(MatchError(brokersim.ErrUnsupportedOperation))
			topic, _ := broker.Topic("t1")
			Expect(topic.PartitionCount()).To(Equal(3))
			Expect(bodies(topic.Partition(3).Messages())).To(Equal([]string{"kept"}))
		})
	})

	When("a topic that was never declared is referenced", func() {
		It("signals TopicNotFound", func() {
			_, err := broker.AddMessage("ghost", brokersim.NewMessage(at("2018-02-01T00:00"), "body", "k"))
			Expect(err).To(MatchError(brokersim.ErrTopicNotFound))
			Expect(broker.ChangeTopicSettings("ghost", 2)).To(MatchError(brokersim.ErrTopicNotFound))
		})
	})

	When("a topic grows", func() {
		It("keeps existing messages and accepts the new partitions", func() {
			Expect(broker.AddTopic("t1", 1)).To(Succeed())
			_, err := broker.AddMessage("t1", brokersim.NewPartitionedMessage(at("2018-02-01T00:00"), "before", 1, "k"))
			Expect(err).NotTo(HaveOccurred())

			Expect(broker.ChangeTopicSettings("t1", 3)).To(Succeed())
			_, err = broker.AddMessage("t1", brokersim.NewPartitionedMessage(at("2018-02-02T00:00"), "after", 3, "k"))
			Expect(err).NotTo(HaveOccurred())

			topic, _ := broker.Topic("t1")
			Expect(topic.Partitions()).To(HaveLen(3))
			Expect(bodies(topic.Partition(1).Messages())).To(Equal([]string{"before"}))
			Expect(bodies(topic.Partition(3).Messages())).To(Equal([]string{"after"}))
		})
	})
})
