package queue

import (
	"context"
	"fmt"
	"log"
	"time"
)

// PurchaseExpirer is the slice of the purchase service the task handler
// needs; defined here to keep the queue package free of service imports.
type PurchaseExpirer interface {
	ExpirePurchase(ctx context.Context, purchaseID string) error
}

// Notifier delivers out-of-band notifications about task outcomes.
type Notifier interface {
	SendMessage(chatID, text string) error
}

// TaskHandler routes queue tasks to their executors
type TaskHandler struct {
	purchases PurchaseExpirer
	notifier  Notifier
	chatID    string
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(purchases PurchaseExpirer, notifier Notifier, chatID string) *TaskHandler {
	return &TaskHandler{
		purchases: purchases,
		notifier:  notifier,
		chatID:    chatID,
	}
}

// HandleTask executes a single task by type
func (h *TaskHandler) HandleTask(task *Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch task.Type {
	case TaskTypeExpirePurchase:
		return h.handleExpirePurchase(ctx, task)
	case TaskTypeSendNotification:
		return h.handleSendNotification(task)
	default:
		return fmt.Errorf("invalid task type: %s", task.Type)
	}
}

func (h *TaskHandler) handleExpirePurchase(ctx context.Context, task *Task) error {
	purchaseID, ok := task.Data["purchase_id"].(string)
	if !ok || purchaseID == "" {
		return fmt.Errorf("invalid expire_purchase task: missing purchase_id")
	}

	err := h.purchases.ExpirePurchase(ctx, purchaseID)
	if err != nil {
		return fmt.Errorf("failed to expire purchase %s: %w", purchaseID, err)
	}

	log.Printf("Purchase %s expired by queue task %s", purchaseID, task.ID)
	return nil
}

func (h *TaskHandler) handleSendNotification(task *Task) error {
	if h.notifier == nil || h.chatID == "" {
		return nil // Notifications disabled
	}

	text, ok := task.Data["text"].(string)
	if !ok || text == "" {
		return fmt.Errorf("invalid send_notification task: missing text")
	}

	if err := h.notifier.SendMessage(h.chatID, text); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}
