package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's login session.
func (r *CacheKeyStruct) CandidateSessionKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// CandidateActiveInterviewKey returns the cache key holding the candidate's
// currently active interview session ID.
func (r *CacheKeyStruct) CandidateActiveInterviewKey(candidateID int) string {
	return fmt.Sprintf("candidate:%d:active_interview", candidateID)
}

// InterviewDraftAnswersKey returns the cache key for a session's answer drafts.
func (r *CacheKeyStruct) InterviewDraftAnswersKey(sessionID string) string {
	return fmt.Sprintf("interview:%s:answers", sessionID)
}

// InterviewRecordingKey returns the cache key for a session's rolling
// recording-chunk references.
func (r *CacheKeyStruct) InterviewRecordingKey(sessionID string) string {
	return fmt.Sprintf("interview:%s:recording", sessionID)
}

// AccessCodeKey returns the cache key tracking redemption of an access code.
func (r *CacheKeyStruct) AccessCodeKey(code string) string {
	return fmt.Sprintf("access_code:%s", code)
}

// ViolationMonitorChannel returns the Redis Pub/Sub channel that accepted
// violations are published to for live proctor dashboards.
func (r *CacheKeyStruct) ViolationMonitorChannel() string {
	return "interviews:violations"
}

var CacheKey = NewCacheKeyStruct()
