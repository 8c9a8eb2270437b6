// Package authz maps (service, operation) pairs to the authorization level
// required to invoke them.
package authz

// Level is a totally ordered authorization tier.
type Level int

const (
	Anonymous Level = iota
	User
	Operator
	Administrator
)

func (l Level) String() string {
	switch l {
	case Anonymous:
		return "Anonymous"
	case User:
		return "User"
	case Operator:
		return "Operator"
	case Administrator:
		return "Administrator"
	default:
		return "Unknown"
	}
}

// Satisfies reports whether held satisfies a requirement of required: held
// must be at least as privileged.
func Satisfies(held, required Level) bool {
	return held >= required
}

type key struct {
	service   string
	operation string
}

// policy is populated once at startup and never mutated afterward.
var policy = map[key]Level{
	// Device service.
	{"device", "GetDeviceInformation"}: User,
	{"device", "GetCapabilities"}:      User,
	{"device", "GetServices"}:          User,
	{"device", "GetServiceCapabilities"}: User,
	{"device", "GetSystemDateAndTime"}: Anonymous,
	{"device", "GetHostname"}:          User,
	{"device", "GetNetworkInterfaces"}: User,
	{"device", "GetScopes"}:            User,
	{"device", "GetDiscoveryMode"}:     User,
	{"device", "GetUsers"}:             Administrator,
	{"device", "SetSystemDateAndTime"}: Operator,
	{"device", "SetHostname"}:          Operator,
	{"device", "SetScopes"}:            Operator,
	{"device", "AddScopes"}:            Operator,
	{"device", "RemoveScopes"}:         Operator,
	{"device", "SetDiscoveryMode"}:     Operator,
	{"device", "SystemReboot"}:         Administrator,
	{"device", "CreateUsers"}:          Administrator,
	{"device", "DeleteUsers"}:          Administrator,
	{"device", "SetUser"}:              Administrator,

	// Media service.
	{"media", "GetProfiles"}:                           User,
	{"media", "GetProfile"}:                            User,
	{"media", "GetVideoSources"}:                       User,
	{"media", "GetVideoSourceConfigurations"}:          User,
	{"media", "GetVideoSourceConfiguration"}:           User,
	{"media", "GetVideoSourceConfigurationOptions"}:    User,
	{"media", "GetVideoEncoderConfigurations"}:         User,
	{"media", "GetVideoEncoderConfiguration"}:          User,
	{"media", "GetVideoEncoderConfigurationOptions"}:   User,
	{"media", "GetAudioSources"}:                       User,
	{"media", "GetAudioSourceConfigurations"}:          User,
	{"media", "GetAudioSourceConfiguration"}:           User,
	{"media", "GetAudioEncoderConfigurations"}:         User,
	{"media", "GetAudioEncoderConfiguration"}:          User,
	{"media", "GetAudioEncoderConfigurationOptions"}:   User,
	{"media", "GetStreamUri"}:                          User,
	{"media", "GetSnapshotUri"}:                        User,
	{"media", "CreateProfile"}:                         Operator,
	{"media", "DeleteProfile"}:                         Operator,
	{"media", "SetVideoSourceConfiguration"}:           Operator,
	{"media", "AddVideoSourceConfiguration"}:           Operator,
	{"media", "RemoveVideoSourceConfiguration"}:        Operator,
	{"media", "SetVideoEncoderConfiguration"}:          Operator,
	{"media", "AddVideoEncoderConfiguration"}:          Operator,
	{"media", "RemoveVideoEncoderConfiguration"}:       Operator,
	{"media", "SetAudioSourceConfiguration"}:           Operator,
	{"media", "AddAudioSourceConfiguration"}:           Operator,
	{"media", "RemoveAudioSourceConfiguration"}:        Operator,
	{"media", "SetAudioEncoderConfiguration"}:          Operator,
	{"media", "AddAudioEncoderConfiguration"}:          Operator,
	{"media", "RemoveAudioEncoderConfiguration"}:       Operator,

	// PTZ service.
	{"ptz", "GetNodes"}:                      User,
	{"ptz", "GetNode"}:                       User,
	{"ptz", "GetConfigurations"}:             User,
	{"ptz", "GetConfiguration"}:              User,
	{"ptz", "GetConfigurationOptions"}:       User,
	{"ptz", "GetStatus"}:                     User,
	{"ptz", "GetPresets"}:                    User,
	{"ptz", "GetServiceCapabilities"}:        User,
	{"ptz", "GetCompatibleConfigurations"}:   User,
	{"ptz", "SetConfiguration"}:              Operator,
	{"ptz", "AbsoluteMove"}:                  Operator,
	{"ptz", "RelativeMove"}:                  Operator,
	{"ptz", "ContinuousMove"}:                Operator,
	{"ptz", "Stop"}:                          Operator,
	{"ptz", "GotoHomePosition"}:              Operator,
	{"ptz", "SetHomePosition"}:               Operator,
	{"ptz", "SetPreset"}:                     Operator,
	{"ptz", "GotoPreset"}:                    Operator,
	{"ptz", "RemovePreset"}:                  Operator,
	{"ptz", "SendAuxiliaryCommand"}:          Operator,

	// Imaging service.
	{"imaging", "GetImagingSettings"}:      User,
	{"imaging", "GetOptions"}:              User,
	{"imaging", "GetStatus"}:               User,
	{"imaging", "GetMoveOptions"}:          User,
	{"imaging", "GetServiceCapabilities"}:  User,
	{"imaging", "GetPresets"}:              User,
	{"imaging", "GetCurrentPreset"}:        User,
	{"imaging", "SetImagingSettings"}:      Operator,
	{"imaging", "Move"}:                    Operator,
	{"imaging", "Stop"}:                    Operator,
	{"imaging", "SetCurrentPreset"}:        Operator,
}

// RequiredLevel returns the level required to invoke operation on service.
// Operations not in the static table fail secure to Administrator.
func RequiredLevel(service, operation string) Level {
	if lvl, ok := policy[key{service, operation}]; ok {
		return lvl
	}
	return Administrator
}
