package enums

// RestockScheduleStatus tracks an expected restock date.
type RestockScheduleStatus string

const (
	RestockSchedulePending   RestockScheduleStatus = "pending"
	RestockScheduleExpired   RestockScheduleStatus = "expired"
	RestockScheduleFulfilled RestockScheduleStatus = "fulfilled"
)

func (s RestockScheduleStatus) String() string {
	return string(s)
}
