package utils

// Find 按ID查找数据
// 参数：dataMap-ID->数据，data-全部数据，ids-要查找的ID
// 返回：ids为空时返回全部数据；否则返回找到的数据（保持ids顺序）与不存在的ID
func Find[K comparable, T any](dataMap map[K]T, data []T, ids []K) (okData []T, failedIDs []K) {
	if len(ids) == 0 {
		return data, nil
	}
	okData = make([]T, 0, len(ids))
	failedIDs = make([]K, 0)
	for _, id := range ids {
		if d, ok := dataMap[id]; ok {
			okData = append(okData, d)
		} else {
			failedIDs = append(failedIDs, id)
		}
	}
	return
}
