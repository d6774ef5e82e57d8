package model

import "time"

// Candidate は立候補者を表す。
// (Name, Party)の組はシステム全体で一意。NameとPartyは大文字で正規化して保存する。
type Candidate struct {
	ID        string
	Name      string
	Party     string
	Age       int
	VoteCount int    // 単調非減少。votesレコード数と常に一致する
	CreatedBy string // 登録した管理者のユーザーID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Vote は投票台帳の1エントリを表す。追記専用で、更新・削除はされない。
// VoterIDにはDBレベルの一意制約があり、1人1票の二重の防衛線となる。
type Vote struct {
	ID          string
	CandidateID string
	VoterID     string
	VotedAt     time.Time
}

// TallyEntry は政党ごとの得票数の集計結果を表す。
type TallyEntry struct {
	Party     string `json:"party"`
	VoteCount int    `json:"voteCount"`
}

// CandidateSummary は一覧表示用の立候補者の射影。得票数は含まない。
type CandidateSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Party string `json:"party"`
}
