// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 認証は外部IdPに委譲しており、ProviderUserIDがIdP側のユーザーIDとの紐付けになる。
// エントリとインサイトの外部キーにはローカルのIDを使用する。
type User struct {
	ID             string
	Email          string
	ProviderUserID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
