package scoring

import "errors"

// 计分引擎错误类型。除 ErrConflict 外全部是终态错误，
// 必须原样透传给调用方，不允许吞掉或互相混淆。
var (
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrChallengeNotPublished = errors.New("challenge not published")
	ErrAlreadySolved         = errors.New("challenge already solved")
	ErrIncorrectFlag         = errors.New("incorrect flag")
	ErrHintNotFound          = errors.New("hint not found")
	ErrAlreadyUnlocked       = errors.New("hint already unlocked")
	ErrInsufficientScore     = errors.New("insufficient score")

	// ErrConflict 事务冲突（乐观并发控制下的瞬时错误）。
	// 引擎内部有限次自动重试，失败事务不留任何副作用。
	ErrConflict = errors.New("transaction conflict")
)
