package advice

// message is a primary/advanced message pair. Advanced is only
// surfaced to professional-device clients.
type message struct {
	Primary  string
	Advanced string
}

var (
	stabilityCritical = message{Primary: "画面抖动，请稳住", Advanced: "建议改用三脚架或稳定器以获得平滑运镜"}
	stabilityWarning  = message{Primary: "稍有晃动，放慢动作"}
	stabilityPositive = message{Primary: "很稳！继续保持"}

	speedTooFast = message{Primary: "移动太快了，放慢一些"}
	speedUneven  = message{Primary: "速度不均匀，试着匀速移动"}
	speedPerfect = message{Primary: "速度适中，保持"}

	subjectOffCenter = message{Primary: "主体偏%s，调整构图"}
	subjectTooLarge  = message{Primary: "主体太大，后退一些"}
	subjectTooSmall  = message{Primary: "主体太小，靠近一些"}
	subjectLost      = message{Primary: "丢失主体，请重新取景"}

	directionHint = message{Primary: "正在向%s移动，避免突然转向%s"}

	beatUpcoming = message{Primary: "节拍即将到来"}
	beatNow      = message{Primary: "节拍点，现在运镜"}

	telephotoShake          = message{Primary: "长焦镜头手抖明显，建议更换广角或使用稳定器"}
	stabilizationSuggestion = message{Primary: "画面不稳，建议使用稳定设备"}

	lowConfidenceStatus = Payload{
		Priority: PriorityInfo,
		Category: CategoryStability,
		Message:  "分析中，请保持镜头对准主体",
	}
)

// directionNames maps a coarse compass direction key to its Chinese label,
// and avoidDirections to the opposite direction a shooter should avoid
// swinging toward mid-shot.
var directionNames = map[string]string{
	"right": "右",
	"down":  "下",
	"left":  "左",
	"up":    "上",
}

var avoidDirections = map[string]string{
	"right": "左",
	"down":  "上",
	"left":  "右",
	"up":    "下",
}
