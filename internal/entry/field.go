// Package entry はエントリのCRUDと、手動入力とAI提案を統合する
// リコンシリエーション処理を提供する。
package entry

// Field は1フィールド分の値と手動フラグの組。
// 手動フラグが立っているフィールドはAI整形で上書きされない。
type Field[T any] struct {
	Value  *T
	Manual bool
}

// MergeField は受信フィールドを保存済みフィールドに重ねる純関数。
// 受信値が非nilならその値を採用して手動扱いにする。受信値がnilの場合は
// 保存済みの値を維持する。手動フラグは一度trueになったら受信側の明示的な
// 指定がない限り暗黙には降りない。
func MergeField[T any](incoming, stored Field[T]) Field[T] {
	if incoming.Value != nil {
		return Field[T]{Value: incoming.Value, Manual: true}
	}
	merged := stored
	if incoming.Manual {
		merged.Manual = true
	}
	return merged
}
