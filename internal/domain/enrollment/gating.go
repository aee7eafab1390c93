package enrollment

import (
	"sort"

	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK GATING ENGINE
// Чистое вычисление доступности заданий из упорядоченного списка заданий
// и истории сдач одного зачисления. Никаких побочных эффектов.
// ══════════════════════════════════════════════════════════════════════════════

// TaskStatus представляет вычисленный статус одного задания для студента.
type TaskStatus struct {
	// TaskID - идентификатор задания.
	TaskID string

	// Order - порядковый номер задания.
	Order int

	// IsUnlocked - доступно ли задание.
	IsUnlocked bool

	// IsCompleted - есть ли одобренная сдача.
	IsCompleted bool

	// CanSubmit - можно ли сейчас создать новую сдачу.
	CanSubmit bool
}

// GatingEngine вычисляет статусы заданий.
type GatingEngine struct{}

// NewGatingEngine создаёт движок гейтинга.
func NewGatingEngine() *GatingEngine {
	return &GatingEngine{}
}

// ComputeTaskStatuses вычисляет статус каждого задания программы.
//
// Правила:
//   - задание с индексом 0 разблокировано, только если оплата завершена;
//   - задание с индексом i>0 разблокировано, только если у задания i-1
//     есть одобренная сдача;
//   - задание выполнено, если у него есть одобренная сдача;
//   - сдавать можно разблокированное, невыполненное задание без
//     существующей PENDING сдачи, и только при завершённой оплате.
//
// Разблокировка не отзывается: пути мутации, снимающего одобрение,
// в этой модели не существует.
func (g *GatingEngine) ComputeTaskStatuses(
	tasks []Task,
	subs []*submission.Submission,
	paymentStatus PaymentStatus,
) []TaskStatus {
	ordered := make([]Task, len(tasks))
	copy(ordered, tasks)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	approved := make(map[string]bool, len(subs))
	pending := make(map[string]bool, len(subs))
	for _, s := range subs {
		switch s.Status {
		case submission.StatusApproved:
			approved[s.TaskID] = true
		case submission.StatusPending:
			pending[s.TaskID] = true
		}
	}

	paid := paymentStatus.IsSettled()
	statuses := make([]TaskStatus, 0, len(ordered))

	for i, task := range ordered {
		var unlocked bool
		if i == 0 {
			unlocked = paid
		} else {
			unlocked = approved[ordered[i-1].ID]
		}

		completed := approved[task.ID]
		canSubmit := unlocked && !completed && !pending[task.ID] && paid

		statuses = append(statuses, TaskStatus{
			TaskID:      task.ID,
			Order:       task.Order,
			IsUnlocked:  unlocked,
			IsCompleted: completed,
			CanSubmit:   canSubmit,
		})
	}

	return statuses
}

// TaskStatusFor возвращает статус одного задания.
// Второе значение false, если задание не входит в программу.
func (g *GatingEngine) TaskStatusFor(
	tasks []Task,
	subs []*submission.Submission,
	paymentStatus PaymentStatus,
	taskID string,
) (TaskStatus, bool) {
	for _, st := range g.ComputeTaskStatuses(tasks, subs, paymentStatus) {
		if st.TaskID == taskID {
			return st, true
		}
	}
	return TaskStatus{}, false
}

// CountApprovedMandatory подсчитывает одобренные сдачи по обязательным заданиям.
func CountApprovedMandatory(tasks []Task, subs []*submission.Submission) (approved, total int) {
	mandatory := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.IsMandatory {
			mandatory[t.ID] = true
			total++
		}
	}

	counted := make(map[string]bool, len(subs))
	for _, s := range subs {
		if s.IsApproved() && mandatory[s.TaskID] && !counted[s.TaskID] {
			counted[s.TaskID] = true
			approved++
		}
	}
	return approved, total
}
