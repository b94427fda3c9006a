package stt

import (
	"strings"
	"unicode/utf8"
)

// Endpoint types reported by the recognition service.
const (
	EpdWord      = "wordEpd"
	EpdGap       = "gap"
	EpdDuration  = "duration"
	EpdSyllable  = "syllable"
	EpdPeriod    = "period"
	EpdPeriodEpd = "periodEpd"
)

// Sentence-terminal punctuation, including fullwidth forms.
const sentenceTerminals = ".?!。!?"

// IsSentenceEnd decides whether a partial transcript completes an utterance.
// The rules are ordered; the first match wins:
//
//  1. fewer than 2 characters after trimming: no
//  2. period / periodEpd endpoint: yes
//  3. explicit period positions: yes
//  4. text ends with sentence-terminal punctuation: yes
//  5. gap / duration / syllable / wordEpd endpoint with 3+ characters: yes
//  6. otherwise: no
func IsSentenceEnd(epdType, text string, periodPositions []int) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 2 {
		return false
	}
	if epdType == EpdPeriod || epdType == EpdPeriodEpd {
		return true
	}
	if len(periodPositions) > 0 {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	if strings.ContainsRune(sentenceTerminals, last) {
		return true
	}
	switch epdType {
	case EpdGap, EpdDuration, EpdSyllable, EpdWord:
		return utf8.RuneCountInString(text) >= 3
	}
	return false
}
