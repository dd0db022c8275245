package services

import "github.com/qianlnk/werewolf-session/models"

// Toggle 返回切换投票后的新票箱，不修改传入的票箱
//
// 再次选择当前目标为撤票，选择其他目标为改票，未投票则新增一票。空的目标会被删除。
func Toggle(b models.Ballot, voterID, targetID string) models.Ballot {
	next := b.Clone()

	// 先移除该投票者已有的票
	withdrew := false
	for target, voters := range next {
		kept := voters[:0]
		for _, v := range voters {
			if v == voterID {
				if target == targetID {
					withdrew = true
				}
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) == 0 {
			delete(next, target)
		} else {
			next[target] = kept
		}
	}

	if !withdrew {
		next[targetID] = append(next[targetID], voterID)
	}
	return next
}

// Tally 统计每个目标的票数，仅用于展示进度
func Tally(b models.Ballot) map[string]int {
	counts := make(map[string]int, len(b))
	for target, voters := range b {
		counts[target] = len(voters)
	}
	return counts
}

// Reset 返回空票箱
func Reset() models.Ballot {
	return models.Ballot{}
}

// VoteOf 返回投票者当前选择的目标
func VoteOf(b models.Ballot, voterID string) (string, bool) {
	for target, voters := range b {
		for _, v := range voters {
			if v == voterID {
				return target, true
			}
		}
	}
	return "", false
}
