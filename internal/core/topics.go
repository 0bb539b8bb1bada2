// ABOUTME: Topic catalog for quiz generation, built in or loaded from a TOML file
// ABOUTME: Random topic picks become the retrieval query for a random quiz
package core

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultTopics is the built-in network security course outline
var DefaultTopics = []string{
	"OSI architecture", "Symmetric Encryption", "Rijndael", "Entropy",
	"Pseudorandom Number Generator", "Block and Stream Ciphers", "RC4 Stream Cipher",
	"Public-Key Cryptography", "RSA", "Homomorphic encryption",
	"Message authentication", "Hash functions", "Secure Hash Function",
	"Length Extension Attacks", "Message Authentication Code", "HMAC",
	"Authenticated Encryption", "TLS 1.0 Lucky 13 Attack", "Digital Signatures",
	"Hybrid Encryption", "Symmetric key distribution", "Diffie-Hellman Key Exchange",
}

// RandomTopicCount is how many topics a random quiz combines
const RandomTopicCount = 2

// TopicCatalog is the list of topics offered for quizzes.
//
// File format:
//
//	name = "Network Security"
//	topics = ["RSA", "HMAC"]
type TopicCatalog struct {
	Name   string   `toml:"name"`
	Topics []string `toml:"topics"`
}

// DefaultTopicCatalog returns a copy of the built-in catalog
func DefaultTopicCatalog() *TopicCatalog {
	return &TopicCatalog{
		Name:   "Network Security",
		Topics: append([]string(nil), DefaultTopics...),
	}
}

// LoadTopicCatalog reads a TOML catalog. An empty path returns the built-in catalog.
func LoadTopicCatalog(path string) (*TopicCatalog, error) {
	if path == "" {
		return DefaultTopicCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic catalog: %w", err)
	}
	return ParseTopicCatalog(data)
}

// ParseTopicCatalog decodes TOML, trimming blanks and duplicates
func ParseTopicCatalog(data []byte) (*TopicCatalog, error) {
	var catalog TopicCatalog
	if err := toml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse topic catalog: %w", err)
	}

	seen := make(map[string]bool)
	topics := make([]string, 0, len(catalog.Topics))
	for _, t := range catalog.Topics {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil, errors.New("topic catalog has no topics")
	}
	catalog.Topics = topics
	return &catalog, nil
}

// Pick returns n distinct topics chosen uniformly at random
func (c *TopicCatalog) Pick(rng *rand.Rand, n int) []string {
	if n > len(c.Topics) {
		n = len(c.Topics)
	}
	perm := rng.Perm(len(c.Topics))
	picked := make([]string, n)
	for i := 0; i < n; i++ {
		picked[i] = c.Topics[perm[i]]
	}
	return picked
}

// RandomQuery picks RandomTopicCount topics and phrases them as a retrieval query
func (c *TopicCatalog) RandomQuery(rng *rand.Rand) (string, []string) {
	topics := c.Pick(rng, RandomTopicCount)
	return TopicQuery(topics), topics
}

// TopicQuery phrases topics as a retrieval query
func TopicQuery(topics []string) string {
	return "Give me information about " + strings.Join(topics, ", ")
}
