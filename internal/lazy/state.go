package lazy

type State int

const (
	Empty     State = iota //no source attached
	Loading                //a reset is filling the window
	Idle                   //the window is filled as requested, the cursor may still yield items
	Exhausted              //the cursor has reached the end of the effective sequence
	Failed                 //a source or predicate error stopped the cursor
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Idle:
		return "idle"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	}
	return "unknown"
}
