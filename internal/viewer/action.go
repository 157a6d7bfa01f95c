package viewer

type termAction int

const (
	CTRL_C_CODE = 3
	ENTER_CODE  = 13
	ESCAPE_CODE = 27

	NoAction termAction = iota
	Up
	Down
	PageUp
	PageDown
	Home
	End
	Back
	Enter
	Tab
	Stop
	Escape
	EscapeNext
)

func (code termAction) String() string {
	mp := map[termAction]string{
		NoAction:   "NoAction",
		Up:         "Up",
		Down:       "Down",
		PageUp:     "PageUp",
		PageDown:   "PageDown",
		Home:       "Home",
		End:        "End",
		Back:       "Back",
		Enter:      "Enter",
		Tab:        "Tab",
		Stop:       "Stop",
		Escape:     "Escape",
		EscapeNext: "EscapeNext",
	}
	return mp[code]
}

// getTermAction reads a sequence of runes and determinates an action (arrow, page up, enter, stop, ...).
// Escape and EscapeNext are returned while the escape sequence is not complete.
func getTermAction(runeSlice []rune) termAction {

	const (
		BACKSPACE_CODE = 8
		DEL_CODE       = 127
		TAB_CODE       = 9
		LF_CODE        = 10

		CSI_CODE = 91 // '['
		SS3_CODE = 79 // 'O'

		ARROW_UP_FINAL_CODE   = 65
		ARROW_DOWN_FINAL_CODE = 66
		END_FINAL_CODE        = 70
		HOME_FINAL_CODE       = 72
		TILDE_FINAL_CODE      = 126

		//parameters of the ESC [ <n> ~ sequences.
		HOME_PARAM      = '1'
		DELETE_PARAM    = '3'
		END_PARAM       = '4'
		PAGE_UP_PARAM   = '5'
		PAGE_DOWN_PARAM = '6'
	)

	if len(runeSlice) == 0 {
		return NoAction
	}

	if len(runeSlice) == 1 {
		switch runeSlice[0] {
		case DEL_CODE, BACKSPACE_CODE:
			return Back
		case ENTER_CODE, LF_CODE:
			return Enter
		case CTRL_C_CODE:
			return Stop
		case TAB_CODE:
			return Tab
		case ESCAPE_CODE:
			return Escape
		}
	}

	if runeSlice[0] != ESCAPE_CODE {
		return NoAction
	}

	switch runeSlice[1] {
	case CSI_CODE:
		switch len(runeSlice) {
		case 2:
			return EscapeNext
		case 3:
			switch runeSlice[2] {
			case ARROW_UP_FINAL_CODE:
				return Up
			case ARROW_DOWN_FINAL_CODE:
				return Down
			case END_FINAL_CODE:
				return End
			case HOME_FINAL_CODE:
				return Home
			case HOME_PARAM, DELETE_PARAM, END_PARAM, PAGE_UP_PARAM, PAGE_DOWN_PARAM:
				return EscapeNext
			}
		case 4:
			if runeSlice[3] != TILDE_FINAL_CODE {
				return NoAction
			}
			switch runeSlice[2] {
			case HOME_PARAM:
				return Home
			case END_PARAM:
				return End
			case PAGE_UP_PARAM:
				return PageUp
			case PAGE_DOWN_PARAM:
				return PageDown
			}
		}
	case SS3_CODE:
		switch len(runeSlice) {
		case 2:
			return EscapeNext
		case 3:
			switch runeSlice[2] {
			case ARROW_UP_FINAL_CODE:
				return Up
			case ARROW_DOWN_FINAL_CODE:
				return Down
			case END_FINAL_CODE:
				return End
			case HOME_FINAL_CODE:
				return Home
			}
		}
	}

	return NoAction
}
