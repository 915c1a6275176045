package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	statusTag  = "attendance_status"
	statusText = "{0} must be one of PRESENT, ABSENT, LATE, EXCUSED"

	dailyStatusTag  = "daily_status"
	dailyStatusText = "{0} must be one of PRESENT, ABSENT, LATE, EXCUSED, HALF_DAY"

	typeTag  = "attendance_type"
	typeText = "{0} must be one of SCHEDULE_BASED, DAILY"

	reviewStatusTag  = "review_status"
	reviewStatusText = "{0} must be one of APPROVED, REJECTED"

	scheduleOrClassTag  = "schedule_xor_class"
	scheduleOrClassText = "provide either schedule_id or class_id, not both"
)

// InitValidators registers the attendance validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation(TypeScheduleBased))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(dailyStatusTag, statusValidation(TypeDaily))
	core.RegisterCustomTranslation(validate, translator, dailyStatusTag, dailyStatusText)

	_ = validate.RegisterValidation(typeTag, typeValidation)
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)

	_ = validate.RegisterValidation(reviewStatusTag, reviewStatusValidation)
	core.RegisterCustomTranslation(validate, translator, reviewStatusTag, reviewStatusText)

	validate.RegisterStructValidation(markStructValidation, MarkAttendance{})
	core.RegisterCustomTranslation(validate, translator, scheduleOrClassTag, scheduleOrClassText)
}

func statusValidation(t AttendanceType) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return t.Allows(ParseStatus(fl.Field().String()))
	}
}

func typeValidation(fl validator.FieldLevel) bool {
	_, ok := ParseType(fl.Field().String())
	return ok
}

func reviewStatusValidation(fl validator.FieldLevel) bool {
	switch RequestStatus(ParseStatus(fl.Field().String())) {
	case RequestApproved, RequestRejected:
		return true
	}
	return false
}

// markStructValidation requires exactly one of MarkAttendance.ScheduleID & MarkAttendance.ClassID.
func markStructValidation(sl validator.StructLevel) {
	ma := sl.Current().Interface().(MarkAttendance)
	if (ma.ScheduleID == "") == (ma.ClassID == "") {
		sl.ReportError(ma.ScheduleID, "schedule_id", "ScheduleID", scheduleOrClassTag, "")
	}
}
