package cache

import "fmt"

const questionSetPrefix = "study:questions:module:"

// QuestionSetKey is the cache key of a module's ordered question list
func QuestionSetKey(moduleID uint) string {
	return fmt.Sprintf("%s%d", questionSetPrefix, moduleID)
}

// QuestionSetPattern matches every cached question list
func QuestionSetPattern() string {
	return questionSetPrefix + "*"
}
