package engine

import (
	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/controlmap"
)

// FrameworkBucket holds the findings mapped to one active framework.
type FrameworkBucket struct {
	Framework controlmap.Framework
	Findings  []FrameworkFinding
}

// Passed counts the passing findings in the bucket.
func (b FrameworkBucket) Passed() int {
	return lo.CountBy(b.Findings, func(f FrameworkFinding) bool { return !f.Failed() })
}

// Classification is the grouping of a finding set by family and by framework.
type Classification struct {
	Families   map[Family][]Finding
	Frameworks []FrameworkBucket
}

// Classify groups findings into the four control families and into one bucket per
// known active framework, in the order the frameworks were given.
func Classify(findings []Finding, frameworks []controlmap.Framework) Classification {
	c := Classification{Families: make(map[Family][]Finding, len(Families))}
	for _, fam := range Families {
		c.Families[fam] = []Finding{}
	}
	for _, f := range findings {
		if f.Family == FamilyUnclassified {
			continue
		}
		c.Families[f.Family] = append(c.Families[f.Family], f)
	}

	for _, fw := range frameworks {
		bucket := FrameworkBucket{Framework: fw, Findings: []FrameworkFinding{}}
		for _, f := range findings {
			if code, ok := f.Mapping.Code(fw); ok {
				bucket.Findings = append(bucket.Findings, FrameworkFinding{Finding: f, ControlCode: code})
			}
		}
		c.Frameworks = append(c.Frameworks, bucket)
	}
	return c
}
