package fiscal

import (
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

// Disparadores del ciclo de fiscalización.
const (
	triggerSend   = "send"   // arranca un intento de envío
	triggerAccept = "accept" // la autoridad aceptó; número fiscal asignado
	triggerReject = "reject" // fallo de red, validación o rechazo de la autoridad
	triggerExempt = "exempt" // fuera del alcance (referencia excluida, duplicado)
	triggerCancel = "cancel" // documento cancelado tras fiscalizar
	triggerReset  = "reset"  // vuelta manual a pending (limpia el rastro de error)
)

// newDocumentMachine arma la máquina de estados del ciclo de fiscalización:
//
//	pending ──send──▶ sent ──accept──▶ fiscalized ──cancel──▶ cancelled
//	   │                │
//	   │                └──reject──▶ failed ──send──▶ sent (reintento)
//	   │                                │
//	   └──────exempt──────◀─────exempt──┘
//
// reset: sent|failed|exempted ──▶ pending (limpia el rastro fiscal)
func newDocumentMachine(initial string) *stateless.StateMachine {
	sm := stateless.NewStateMachine(initial)

	sm.Configure(entity.FiscalStatusPending).
		Permit(triggerSend, entity.FiscalStatusSent).
		Permit(triggerExempt, entity.FiscalStatusExempted)

	sm.Configure(entity.FiscalStatusSent).
		Permit(triggerAccept, entity.FiscalStatusFiscalized).
		Permit(triggerReject, entity.FiscalStatusFailed).
		Permit(triggerReset, entity.FiscalStatusPending)

	sm.Configure(entity.FiscalStatusFailed).
		Permit(triggerSend, entity.FiscalStatusSent).
		Permit(triggerExempt, entity.FiscalStatusExempted).
		Permit(triggerReset, entity.FiscalStatusPending)

	sm.Configure(entity.FiscalStatusExempted).
		Permit(triggerReset, entity.FiscalStatusPending)

	sm.Configure(entity.FiscalStatusFiscalized).
		Permit(triggerCancel, entity.FiscalStatusCancelled)

	return sm
}

// transition dispara trigger sobre el estado del documento y persiste el nuevo
// estado en memoria. Una transición no permitida devuelve domain.ErrConflict.
func transition(doc *entity.FiscalDocument, trigger string) error {
	sm := newDocumentMachine(doc.FiscalStatus)
	if err := sm.Fire(trigger); err != nil {
		return fmt.Errorf("%w: %s no admite %q", domain.ErrConflict, doc.FiscalStatus, trigger)
	}
	doc.FiscalStatus = sm.MustState().(string)
	return nil
}
