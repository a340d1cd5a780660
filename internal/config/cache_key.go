package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID string) string {
	return fmt.Sprintf("login:%s", studentID)
}

// EnrollmentChannel returns the Redis PubSub channel carrying enrollment events
func (r *CacheKeyStruct) EnrollmentChannel() string {
	return "enrollment:events"
}

var CacheKey = NewCacheKeyStruct()
