package cli

const banner = `
  ___  ___           _     ______           _
  |  \/  |          (_)    | ___ \         (_)
  | .  . | _____   ___  ___| |_/ /_ __ __ _ _ _ __
  | |\/| |/ _ \ \ / / |/ _ \ ___ \ '__/ _` + "`" + ` | | '_ \
  | |  | | (_) \ V /| |  __/ |_/ / | | (_| | | | | |
  \_|  |_/\___/ \_/ |_|\___\____/|_|  \__,_|_|_| |_|`

const goodbye = `
     _____                 _______            _
    |  __ \               | | ___ \          | |
    | |  \/ ___   ___   __| | |_/ /_   _  ___| |
    | | __ / _ \ / _ \ / _` + "`" + ` | ___ \ | | |/ _ \ |
    | |_\ \ (_) | (_) | (_| | |_/ / |_| |  __/_|
     \____/\___/ \___/ \__,_\____/ \__, |\___(_)
                                    __/ |
                                   |___/`

const brain = `
                       _.--'"'.
                      (  ( (   )
                      (o)_    ) )
                          (o)_.'
                            )/`

const userMenuText = `
  Please choose:

  1. Log In User
  2. Add User
  3. Delete User
  4. List Users
  0. Leave the MovieBrain
`

// movieMenuText takes the user name.
const movieMenuText = `
  %s's menu:

  1. List movies            7. Random movie
  2. Add movie              8. Search movie
  3. Delete movie           9. Sort movies
  4. Add/Update note       10. Filter movies
  5. Update rating         11. Export catalog (YAML)
  6. Show stats            12. Import catalog (JSON/YAML)
  0. Log out
`
