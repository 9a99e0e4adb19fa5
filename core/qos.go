package core

// QoSClass is an observational label, grounded on the source implementation's
// ThreadQoSClass, attached to a SerialExecutor or PoolExecutor at
// construction. Like TaskPriority it never feeds back into Task Store
// ordering or scheduling decisions — it exists purely so logs, metrics and
// cmd/dispatchtop can group executors by the kind of work they host.
type QoSClass int

const (
	QoSBackground QoSClass = iota
	QoSUtility
	QoSUserInitiated
	QoSUserInteractive
	QoSDefault
)

func (q QoSClass) String() string {
	switch q {
	case QoSBackground:
		return "background"
	case QoSUtility:
		return "utility"
	case QoSUserInitiated:
		return "user_initiated"
	case QoSUserInteractive:
		return "user_interactive"
	case QoSDefault:
		return "default"
	default:
		return "unknown"
	}
}
