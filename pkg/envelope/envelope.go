// Package envelope はブラウザに返すJSONレスポンスの共通形式を定義する。
//
// 失敗時は error と message の両方を埋める。既存の画面は片方しか読まない。
// 原因と利用者向けの文言が別にあるときは error に原因、message に文言を入れる。
package envelope

// Envelope はブラウザ向けの正規化されたレスポンス。
type Envelope struct {
	// Success は処理の成否。
	Success bool `json:"success"`
	// Data は成功時のペイロード。
	Data any `json:"data,omitempty"`
	// Message は人が読むためのメッセージ。
	Message string `json:"message,omitempty"`
	// Error は失敗理由。
	Error string `json:"error,omitempty"`
	// Details は上流の検証エラーや生レスポンスの抜粋。
	Details any `json:"details,omitempty"`
}

// Failure は失敗レスポンスを生成する。
func Failure(msg string) Envelope {
	return Envelope{Success: false, Error: msg, Message: msg}
}

// FailureWithDetails は詳細付きの失敗レスポンスを生成する。
func FailureWithDetails(msg string, details any) Envelope {
	e := Failure(msg)
	e.Details = details
	return e
}

// FailureWithCause は原因と利用者向けの文言を分けた失敗レスポンスを生成する。
func FailureWithCause(msg, cause string) Envelope {
	return Envelope{Success: false, Error: cause, Message: msg}
}

// OK はメッセージのみの成功レスポンスを生成する。
func OK(msg string) Envelope {
	return Envelope{Success: true, Message: msg}
}
