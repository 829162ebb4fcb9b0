package kafkaconsumer

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

type groupHandler struct {
	topic    string
	process  messageProcessor
	onAssign func(parts []int32)
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	if h.onAssign != nil {
		h.onAssign(s.Claims()[h.topic])
	}
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	if h.onAssign != nil {
		h.onAssign(nil)
	}
	return nil
}

// ConsumeClaim marks a message only after its keys are gone, so a failed
// delete is redelivered after the next rebalance.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
